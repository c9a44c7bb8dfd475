//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// composeFile is the stack started with `docker compose up -d` from the repo
// root. Cart state lives in its redis service, so it survives the restart.
var composeFile = getenv("E2E_COMPOSE_FILE", filepath.Join("..", "docker-compose.yml"))

func restartStorefrontContainer(t *testing.T, ctx context.Context) {
	t.Helper()

	if _, err := os.Stat(composeFile); err != nil {
		t.Fatalf("compose file %s: %v", composeFile, err)
	}
	cmd := exec.CommandContext(ctx, "docker", "compose", "-f", composeFile, "restart", "storefront")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart storefront failed: %v\n%s", err, string(out))
	}
}
