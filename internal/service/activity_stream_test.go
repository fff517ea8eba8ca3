package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steward-api/internal/dto"
)

func receive(t *testing.T, ch <-chan dto.ActivityResponse) dto.ActivityResponse {
	t.Helper()
	select {
	case entry := <-ch:
		return entry
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for activity entry")
		return dto.ActivityResponse{}
	}
}

func requireSilent(t *testing.T, ch <-chan dto.ActivityResponse) {
	t.Helper()
	select {
	case entry, ok := <-ch:
		if ok {
			t.Fatalf("unexpected entry %+v", entry)
		}
	default:
	}
}

func TestStreamFansOutPerTenant(t *testing.T) {
	stream := NewActivityStream(nil, "steward-test", zerolog.Nop())

	first, stopFirst := stream.Subscribe(testOrgA)
	defer stopFirst()
	second, stopSecond := stream.Subscribe(testOrgA)
	defer stopSecond()
	other, stopOther := stream.Subscribe(testOrgB)
	defer stopOther()

	stream.Publish(context.Background(), dto.ActivityResponse{ID: 7, OrgID: testOrgA, EventType: "checked_out"})

	require.EqualValues(t, 7, receive(t, first).ID)
	require.EqualValues(t, 7, receive(t, second).ID)
	requireSilent(t, other)
}

func TestStreamUnsubscribeClosesChannel(t *testing.T) {
	stream := NewActivityStream(nil, "", zerolog.Nop())

	ch, stop := stream.Subscribe(testOrgA)
	stop()
	stop()

	_, ok := <-ch
	require.False(t, ok)

	stream.Publish(context.Background(), dto.ActivityResponse{OrgID: testOrgA})
}

func TestStreamDropsWhenSubscriberIsSlow(t *testing.T) {
	stream := NewActivityStream(nil, "steward-test", zerolog.Nop())
	ch, stop := stream.Subscribe(testOrgA)
	defer stop()

	for i := 0; i < activityBufferSize+5; i++ {
		stream.Publish(context.Background(), dto.ActivityResponse{ID: uint(i + 1), OrgID: testOrgA})
	}
	require.Len(t, ch, activityBufferSize)
}

func TestStreamRelaysRemoteEventsOnly(t *testing.T) {
	stream := NewActivityStream(nil, "steward:test", zerolog.Nop()).(*activityStream)
	require.Equal(t, "steward.test.activity.org_a", stream.subject(testOrgA))

	ch, stop := stream.Subscribe(testOrgA)
	defer stop()

	own, err := json.Marshal(activityEvent{Source: stream.nodeID, Entry: dto.ActivityResponse{ID: 1, OrgID: testOrgA}})
	require.NoError(t, err)
	stream.handleEvent(own)
	requireSilent(t, ch)

	stream.handleEvent([]byte("not json"))
	requireSilent(t, ch)

	remote, err := json.Marshal(activityEvent{Source: "another-node", Entry: dto.ActivityResponse{ID: 2, OrgID: testOrgA}})
	require.NoError(t, err)
	stream.handleEvent(remote)
	require.EqualValues(t, 2, receive(t, ch).ID)
}
