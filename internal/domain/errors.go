package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrLockHeld        = errors.New("lock already held")
	ErrPartitionBroken = errors.New("listing belongs to more than one group")
	ErrInvalidListing  = errors.New("invalid listing")
)
