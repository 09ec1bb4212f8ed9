package exec

import (
	"github.com/nmehta6/jobforge/internal/config"
	"github.com/nmehta6/jobforge/pkg/models"
)

// BuildRegistry wires one executor per job type from config. Called once at
// server startup. The three schedule domains each get their own service URL;
// one-off imports and exports go to the transfer service.
func BuildRegistry(cfg config.ExecutorsConfig) *Registry {
	r := NewRegistry()
	r.Register(models.JobTypeDataSync, NewWebhookExecutor("data-sync", cfg.DataSyncURL, cfg.Timeout))
	r.Register(models.JobTypeWorkflow, NewWebhookExecutor("workflow", cfg.WorkflowURL, cfg.Timeout))
	r.Register(models.JobTypeNotebook, NewWebhookExecutor("notebook", cfg.NotebookURL, cfg.Timeout))
	r.Register(models.JobTypeImport, NewWebhookExecutor("import", cfg.TransferURL, cfg.Timeout))
	r.Register(models.JobTypeExport, NewWebhookExecutor("export", cfg.TransferURL, cfg.Timeout))
	return r
}
