// Package mocks provides shared test doubles for the generative backend.
//
// # Usage
//
//	import "illustrator/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    client := mocks.NewMockLLMClient()
//	    client.RespondWith(`{"fields": {"level_1_label": "Foundation"}}`)
//	    synth := backend.NewLLMSynthesizer(client, renderer, 0, 0)
//	    // ...
//	}
//
// # Available Mocks
//
//   - MockLLMClient: backend.LLMClient with call recording and canned responses
//   - StubSynthesizer: backend.Synthesizer returning scripted syntheses
package mocks
