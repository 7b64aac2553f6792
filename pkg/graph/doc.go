// Package graph holds the support tree of one build as an arena. Heads,
// pillars, bridges, junctions and anchors live in flat slices and refer to
// each other by integer handle, so back references (a pillar knowing its
// bridges, a bridge knowing its pillars) need no shared ownership.
package graph
