package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresenceTracker_Replace_Drops_Ids_Missing_From_Roster(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	// Given A and B online
	online, offline := tracker.Replace([]string{"A", "B"})
	req.ElementsMatch([]string{"A", "B"}, online)
	req.Empty(offline)

	// When a roster only reports B
	online, offline = tracker.Replace([]string{"B"})

	// Then A goes offline without any leave event
	req.Empty(online)
	req.Equal([]string{"A"}, offline)
	req.False(tracker.IsOnline("A"))
	req.True(tracker.IsOnline("B"))
}

func TestPresenceTracker_Replace_Ignores_Duplicates_And_Blanks(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()

	online, _ := tracker.Replace([]string{"A", "A", "", "C"})

	req.ElementsMatch([]string{"A", "C"}, online)
	req.ElementsMatch([]string{"A", "C"}, tracker.Online())
}

func TestPresenceTracker_Empty_Roster_Takes_Everyone_Offline(t *testing.T) {
	req := require.New(t)
	tracker := NewPresenceTracker()
	tracker.Replace([]string{"A", "B"})

	_, offline := tracker.Replace(nil)

	req.ElementsMatch([]string{"A", "B"}, offline)
	req.Empty(tracker.Online())
}
