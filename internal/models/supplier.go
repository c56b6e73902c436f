// internal/models/supplier.go
package models

type Supplier struct {
	BaseModel
	Name   string         `json:"name" gorm:"size:255;not null"`
	Email  string         `json:"email" gorm:"size:255"`
	Status SupplierStatus `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
}
