// Package models defines domain entities and persistence interfaces for the playsync playlist service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs exchanged between the client engine and the backend
//   - [Track] : One playlist entry with its ordinal position
//   - [Playlist] : The ordered track sequence stored for one identity
//   - [Identity] : Authenticated user handle plus bearer token
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Accounts with bcrypt password hashes
//   - [Session] : Bearer tokens issued at sign-up/log-in
//
// Persistent entities implement the [Model] interface providing ID, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
