// Package aggregates implements the lifecycle aggregate on top of the table-level repos
// in internal/data/repos. It owns the transaction boundary of every write that must keep
// a commitment, its exams and their answers consistent.
package aggregates
