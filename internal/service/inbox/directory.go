package inbox

import (
	"context"

	"github.com/zhouzirui/estate-desk/backend/internal/model/chat"
)

//go:generate mockgen -source=directory.go -destination=../../mocks/mock_directory.go -package=mocks

// DirectoryFetcher lists the sessions that already exist on the chat backend.
type DirectoryFetcher interface {
	FetchDirectory(ctx context.Context) ([]chat.DirectoryEntry, error)
}
