package database

import "errors"

var (
	ErrNotFound               = errors.New("record not found")
	ErrRentalConflict         = errors.New("equipment is already rented for the requested dates")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrAlreadyPaid            = errors.New("rental already has an approved payment")
	ErrAlreadyReviewed        = errors.New("rental already has a review")
	ErrEquipmentInUse         = errors.New("equipment is referenced by rentals")
	ErrDuplicateEmail         = errors.New("email already registered")
)
