// Package acceptance runs the behaviour scenarios in features/ against the
// limiters and the registry. The suite is compiled only with the cucumber
// build tag:
//
//	go test -tags cucumber ./internal/acceptance/...
package acceptance
