// Package mysql provides the chat archive repositories backed by MySQL.
// It ships a file-backed in-memory driver for local development and a
// real MySQL driver that bootstraps its own schema on startup.
package mysql
