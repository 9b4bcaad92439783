// Package aggregates defines the write boundaries of the lifecycle engine and the
// error taxonomy shared by every layer.
//
// Contracts avoid persistence details; implementations live in internal/data/aggregates.
package aggregates
