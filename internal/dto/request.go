package dto

// ReindexRequest confirms a destructive full rebuild of a guild's index.
type ReindexRequest struct {
	Confirm bool `json:"confirm"`
}

// DefineCommandRequest creates or replaces a tenant command alias.
type DefineCommandRequest struct {
	Name        string   `json:"name" binding:"required"`
	BaseCommand string   `json:"base_command" binding:"required"`
	Args        []string `json:"args"`
}

// SetTemplateRequest sets a guild's relay message template.
type SetTemplateRequest struct {
	Sample string `json:"sample" binding:"required"`
}
