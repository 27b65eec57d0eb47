// Package flowdir assigns flow directions to a conditioned elevation grid
// under three models: D8 (one steepest neighbour), D-infinity (a continuous
// angle split between two neighbours) and FD8 (slope-weighted proportions
// over every downslope neighbour).
//
// Each model is also exposed to accumulation through the Router interface,
// so downstream stages never need to know which model produced the routing.
package flowdir
