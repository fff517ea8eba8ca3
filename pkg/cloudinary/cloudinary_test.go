package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicIDSanitizesName(t *testing.T) {
	at := time.Unix(1700000000, 0)

	require.Equal(t, "org-1-incident-7-1700000000", PublicID("org_1-incident-7.png", at))
	require.Equal(t, "photo-1700000000", PublicID("???.jpg", at))
	require.Equal(t, "site-photo-1700000000", PublicID("site photo.jpeg", at))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}
