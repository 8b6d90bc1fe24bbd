// Package ir provides the literal value types that flow from a filter
// request into bound query parameters.
//
// This package contains type definitions and encoders only. It imports
// nothing internal, so every other package can depend on it.
//
// Key design constraints:
//   - Value is sealed; only the types in this package implement it
//   - Objects are never literals (an object in value position is an
//     operator object, interpreted by package filter)
//   - Whole JSON numbers decode to Int, everything else to Float
//   - Canonical JSON (sorted keys, NFC strings) is the only encoding used
//     for shape comparison
package ir
