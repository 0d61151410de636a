package model

// Package model contains domain models/data structures.
// Models carry no database-specific tags so they can cross layers freely.
