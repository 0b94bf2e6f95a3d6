package registry

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/ravituringworks/agency/pkg/orchestrator"
)

// SystemInfoTool is the tool ToolAnalysisStep requests for system questions.
const SystemInfoTool = orchestrator.SystemInfoTool

// SystemInfo reports the host platform as "System Info: {json}".
func SystemInfo(_ context.Context, _ map[string]any) (any, error) {
	family := "unix"
	if runtime.GOOS == "windows" {
		family = "windows"
	}
	info, err := json.Marshal(map[string]string{
		"os":     runtime.GOOS,
		"arch":   runtime.GOARCH,
		"family": family,
	})
	if err != nil {
		return nil, err
	}
	return "System Info: " + string(info), nil
}
