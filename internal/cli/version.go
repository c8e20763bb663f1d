package cli

import (
	"context"
	"fmt"

	"github.com/voldap/voldap/internal"
)

// Represents the 'voldap version' command.
type VersionCmd struct{}

// Executes the version command.
func (c *VersionCmd) Run(ctx context.Context) error {
	fmt.Println(internal.VersionString())
	return nil
}
