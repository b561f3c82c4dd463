package timetable

import "github.com/barmettlerl/minotor-sub000/model"

// Transfer is a walking/cross-platform edge out of a stop with a time
// cost, per spec.md §3.
type Transfer struct {
	Destination     StopId
	Type            model.TransferType
	MinTransferTime *Duration
}

// StopAdjacency is the per-stop adjacency record: which routes call at
// this stop and which transfer edges leave it. Build gives every stop a
// slot; for a stop that no route calls at and no transfer leaves, both
// lists are empty.
type StopAdjacency struct {
	Routes    []RouteId
	Transfers []Transfer
}
