package common

import (
	"courtbook/src/types"
	"slices"
)

type Action string

const (
	ACTION_CONFIRM_PAYMENT Action = "confirm_payment"
	ACTION_CANCEL          Action = "cancel"
	ACTION_EXPIRE          Action = "expire"
	ACTION_COMPLETE        Action = "complete"
	ACTION_CHECK_IN        Action = "check_in"
	ACTION_CHECK_OUT       Action = "check_out"
	ACTION_NO_SHOW         Action = "no_show"
	ACTION_RELEASE         Action = "release"
	ACTION_MAINTENANCE     Action = "maintenance"
	ACTION_ACTIVATE        Action = "activate"
	ACTION_DEACTIVATE      Action = "deactivate"
	ACTION_DELETE          Action = "delete"
)

type transition[S ~string] struct {
	from []S
	to   S
}

var bookingTransitions = map[Action]transition[types.BookingStatus]{
	ACTION_CONFIRM_PAYMENT: {from: []types.BookingStatus{types.BOOKING_PENDING_PAYMENT}, to: types.BOOKING_ACTIVE},
	ACTION_CANCEL:          {from: []types.BookingStatus{types.BOOKING_PENDING_PAYMENT, types.BOOKING_ACTIVE}, to: types.BOOKING_CANCELLED},
	ACTION_EXPIRE:          {from: []types.BookingStatus{types.BOOKING_PENDING_PAYMENT}, to: types.BOOKING_CANCELLED},
	ACTION_COMPLETE:        {from: []types.BookingStatus{types.BOOKING_ACTIVE}, to: types.BOOKING_COMPLETED},
}

var occurrenceTransitions = map[Action]transition[types.OccurrenceStatus]{
	ACTION_CONFIRM_PAYMENT: {from: []types.OccurrenceStatus{types.OCCURRENCE_PENDING_PAYMENT}, to: types.OCCURRENCE_ACTIVE},
	ACTION_CHECK_IN:        {from: []types.OccurrenceStatus{types.OCCURRENCE_ACTIVE}, to: types.OCCURRENCE_CHECKED_IN},
	ACTION_CHECK_OUT:       {from: []types.OccurrenceStatus{types.OCCURRENCE_CHECKED_IN}, to: types.OCCURRENCE_COMPLETED},
	ACTION_NO_SHOW:         {from: []types.OccurrenceStatus{types.OCCURRENCE_ACTIVE}, to: types.OCCURRENCE_NO_SHOW},
	ACTION_CANCEL:          {from: []types.OccurrenceStatus{types.OCCURRENCE_PENDING_PAYMENT, types.OCCURRENCE_ACTIVE}, to: types.OCCURRENCE_CANCELLED},
	ACTION_EXPIRE:          {from: []types.OccurrenceStatus{types.OCCURRENCE_PENDING_PAYMENT}, to: types.OCCURRENCE_CANCELLED},
}

var courtTransitions = map[Action]transition[types.CourtStatus]{
	ACTION_CHECK_IN:    {from: []types.CourtStatus{types.COURT_ACTIVE, types.COURT_IN_USE}, to: types.COURT_IN_USE},
	ACTION_RELEASE:     {from: []types.CourtStatus{types.COURT_IN_USE}, to: types.COURT_ACTIVE},
	ACTION_MAINTENANCE: {from: []types.CourtStatus{types.COURT_ACTIVE, types.COURT_INACTIVE, types.COURT_IN_USE, types.COURT_MAINTENANCE}, to: types.COURT_MAINTENANCE},
	ACTION_ACTIVATE:    {from: []types.CourtStatus{types.COURT_INACTIVE, types.COURT_MAINTENANCE, types.COURT_ACTIVE}, to: types.COURT_ACTIVE},
	ACTION_DEACTIVATE:  {from: []types.CourtStatus{types.COURT_ACTIVE, types.COURT_MAINTENANCE, types.COURT_INACTIVE}, to: types.COURT_INACTIVE},
	ACTION_DELETE:      {from: []types.CourtStatus{types.COURT_ACTIVE, types.COURT_INACTIVE, types.COURT_MAINTENANCE}, to: types.COURT_DELETED},
}

func validTransition[S ~string](table map[Action]transition[S], action Action, from S) bool {
	t, ok := table[action]
	if !ok {
		return false
	}
	return slices.Contains(t.from, from)
}

func ValidBookingTransition(action Action, from types.BookingStatus) bool {
	return validTransition(bookingTransitions, action, from)
}

func ValidOccurrenceTransition(action Action, from types.OccurrenceStatus) bool {
	return validTransition(occurrenceTransitions, action, from)
}

func ValidCourtTransition(action Action, from types.CourtStatus) bool {
	return validTransition(courtTransitions, action, from)
}

// bookingRule returns the guarded from-set and target for a booking action.
func bookingRule(action Action) ([]types.BookingStatus, types.BookingStatus) {
	t := bookingTransitions[action]
	return t.from, t.to
}

func occurrenceRule(action Action) ([]types.OccurrenceStatus, types.OccurrenceStatus) {
	t := occurrenceTransitions[action]
	return t.from, t.to
}

func courtRule(action Action) ([]types.CourtStatus, types.CourtStatus) {
	t := courtTransitions[action]
	return t.from, t.to
}
