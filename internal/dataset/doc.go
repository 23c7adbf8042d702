// Package dataset implements the labeled results store shared by every
// condition, measurement and the manager.
//
// A Store holds ordered coordinates (named axes with scalar labels) and
// ordered variables (dense float64 arrays addressed by coordinate names).
// Missing entries are NaN.
//
// # Invariants
//
// Coordinate identity:
//   - A coordinate name is unique per store and has one canonical value list.
//   - DefineCoordinate and DeclareSweep never resize an existing coordinate.
//     Only AccumulateConditions appends values, and every dependent variable
//     is NaN-padded when it does.
//
// Writes:
//   - A variable is allocated on first write over the effective dimensions
//     (the current condition snapshot followed by the dims of the call) and
//     tagged with the owning component's kind.
//   - Later writes overwrite. Nothing accumulates.
//
// Merge:
//   - Merge is an outer join on coordinate names. Shared coordinates must be
//     identical. Merge never appends coordinate values; that is the job of
//     AccumulateConditions alone.
//
// Serialization:
//   - Document and FromDocument round-trip coordinate order, dimension order
//     and NaN positions exactly. The JSON form encodes NaN as null.
package dataset
