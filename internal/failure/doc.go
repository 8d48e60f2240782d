// Package failure classifies transport and HTTP errors into a closed set
// of kinds at the boundary where they occur. Downstream retry policy
// matches on the kind tag rather than inspecting raw error values.
package failure
