package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/accountex-org/ash-reports-sub007/pkg/adapters"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/api"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
)

// loadDefinition reads a JSON report definition from disk and maps it to
// the domain model.
func loadDefinition(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}
	var def api.ReportDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition %s: %w", path, err)
	}
	return adapters.MapReportApiToDomain(def)
}
