// Package model holds the gorm row types of the territory store. Table names
// come from the connection's naming strategy so a namespace prefix applies
// to every table.
package model

import "time"

type Tile struct {
	ID              string    `gorm:"column:id;primaryKey" json:"id"`
	Q               int32     `gorm:"column:q;not null" json:"q"`
	R               int32     `gorm:"column:r;not null" json:"r"`
	S               int32     `gorm:"column:s;not null" json:"s"`
	Type            string    `gorm:"column:type;not null" json:"type"`
	ControllerUID   string    `gorm:"column:controller_uid;not null" json:"controller_uid"`
	Visibility      string    `gorm:"column:visibility;not null" json:"visibility"`
	ResourceDensity float64   `gorm:"column:resource_density;not null" json:"resource_density"`
	Resources       []byte    `gorm:"column:resources;type:jsonb;not null" json:"resources"`
	Color           string    `gorm:"column:color;not null" json:"color"`
	Version         int64     `gorm:"column:version;not null" json:"version"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

type Colony struct {
	ID               string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerUID         string    `gorm:"column:owner_uid;not null" json:"owner_uid"`
	Name             string    `gorm:"column:name;not null" json:"name"`
	Color            string    `gorm:"column:color;not null" json:"color"`
	StartQ           int32     `gorm:"column:start_q;not null" json:"start_q"`
	StartR           int32     `gorm:"column:start_r;not null" json:"start_r"`
	StartS           int32     `gorm:"column:start_s;not null" json:"start_s"`
	TerritoryScore   int32     `gorm:"column:territory_score;not null" json:"territory_score"`
	VisibilityRadius int32     `gorm:"column:visibility_radius;not null" json:"visibility_radius"`
	Version          int64     `gorm:"column:version;not null" json:"version"`
	CreatedAt        time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// ColonyTile is one membership row; tile_id is unique so a tile belongs to
// at most one colony.
type ColonyTile struct {
	ColonyID string `gorm:"column:colony_id;primaryKey" json:"colony_id"`
	TileID   string `gorm:"column:tile_id;primaryKey" json:"tile_id"`
}

type CaptureEvent struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement:true" json:"id"`
	Kind        string `gorm:"column:kind;not null" json:"kind"`
	Ts          int64  `gorm:"column:ts;not null" json:"ts"`
	TileID      string `gorm:"column:tile_id;not null" json:"tile_id"`
	Tile        []byte `gorm:"column:tile;type:jsonb;not null" json:"tile"`
	ColonyID    string `gorm:"column:colony_id;not null" json:"colony_id"`
	UserID      string `gorm:"column:user_id;not null" json:"user_id"`
	Scope       string `gorm:"column:scope;not null" json:"scope"`
	RecipientID string `gorm:"column:recipient_id;not null" json:"recipient_id"`
}

type PlayerCredential struct {
	PlayerID  string    `gorm:"column:player_id;primaryKey" json:"player_id"`
	KeySalt   []byte    `gorm:"column:key_salt;not null" json:"key_salt"`
	KeyHash   []byte    `gorm:"column:key_hash;not null" json:"key_hash"`
	Status    string    `gorm:"column:status;not null" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}
