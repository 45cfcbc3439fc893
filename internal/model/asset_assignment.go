package model

// AssetAssignment maps a supervisor to an asset they are responsible for.
// The table is maintained by the assignment directory, never by this service.
type AssetAssignment struct {
	ActorID string `gorm:"primaryKey;size:64" json:"actor_id"`
	AssetID string `gorm:"primaryKey;size:64;index" json:"asset_id"`
}
