package log

// Canonical field names for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRequestID = "request_id"

	// Catalog
	FieldCategory = "category"
	FieldGroupID  = "group_id"
	FieldItemID   = "item_id"
	FieldPage     = "page"

	// Playback / publish
	FieldTrack    = "track"
	FieldTier     = "tier"
	FieldFilename = "filename"
	FieldStore    = "store"
	FieldURL      = "url"
	FieldStatus   = "status"
)
