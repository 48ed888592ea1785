// Package mocks provides stateful fake API servers for end-to-end tests.
//
//   - LinearMock: the Linear GraphQL endpoint (teams, issues, workflow states,
//     comments, state updates)
//   - ActiveCampaignMock: the ActiveCampaign v3 REST API (tags, automations)
//
// Example usage:
//
//	lm := mocks.NewLinearMock("lin_api_test")
//	defer lm.Close()
//	lm.AddTeam("team-1", "Trade Ideas", "TRA")
//	lm.AddState("team-1", "state-done", "Done", "completed")
//
//	client := linear.NewClient("lin_api_test", linear.WithBaseURL(lm.URL()))
package mocks
