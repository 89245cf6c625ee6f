// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - valuation.go: cost layers, consumptions and the ledger
// - product.go: read-only view of the catalog's products table
package models
