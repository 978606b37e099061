package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

type Project struct {
  ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
  User              *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Name              string         `gorm:"column:name;not null" json:"name"`
  Description       string         `gorm:"column:description" json:"description"`
  CountryCode       string         `gorm:"column:country_code" json:"country_code"`
  ImageKey          string         `gorm:"column:image_key" json:"image_key"`
  ImageURL          string         `gorm:"column:image_url" json:"image_url"`
  Details           datatypes.JSON `gorm:"column:details;type:jsonb" json:"details"`
  DetailsVersion    int            `gorm:"column:details_version;not null;default:0" json:"details_version"`
  ContextDiagnostic datatypes.JSON `gorm:"column:context_diagnostic;type:jsonb" json:"context_diagnostic"`
  CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string {
  return "project"
}

type ProjectCollaborator struct {
  ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  ProjectID uuid.UUID `gorm:"type:uuid;not null;index:idx_project_collaborator,unique" json:"project_id"`
  Project   *Project  `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
  UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_project_collaborator,unique" json:"user_id"`
  User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Role      string    `gorm:"column:role;not null;default:'viewer'" json:"role"`
  CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProjectCollaborator) TableName() string {
  return "project_collaborator"
}

const (
  CollaboratorRoleOwner  = "owner"
  CollaboratorRoleEditor = "editor"
  CollaboratorRoleViewer = "viewer"
)
