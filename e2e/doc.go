// Package e2e runs the analyze-then-dispatch workflow end to end against
// fake Linear and ActiveCampaign servers.
//
// These tests cover:
//  1. Team key resolution and issue classification over GraphQL
//  2. Local dispatch: tag creation, automation goal planning and generic
//     review comments
//  3. Status comments and the done transition on the tracker
//  4. Cloud submission into the file queue plus the run package
//  5. Run history in SQLite
//
// The servers are started with httptest.NewServer and keep state across
// requests, so assertions read the final tracker and CRM state.
//
// Run with:
//
//	go test -v -count=1 ./e2e/...
//
// Skip in short mode: go test -short ./...
package e2e
