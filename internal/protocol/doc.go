// Package protocol defines the wire format between the kiln CLI and the
// kilnd daemon.
//
// Messages are newline-delimited JSON envelopes carrying a command name
// and an optional payload. Each payload type corresponds to exactly one
// command. Responses reuse the same envelope with the ok or error
// command and a result payload.
//
// Example usage:
//
//	data, err := protocol.Encode(protocol.CmdBake, &protocol.BakeRequest{
//	    Recipe: rec,
//	    Output: "dist",
//	})
//	if err != nil {
//	    return err
//	}
//
//	env, payload, err := protocol.Decode(line)
//	if err != nil {
//	    return err
//	}
//
//	req, err := protocol.DecodePayload[protocol.BakeRequest](payload)
package protocol
