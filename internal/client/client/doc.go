// Package client talks to the remote lending-pool service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) for the
//     lending pool: IsAuthenticated, GetUserInfo, RegisterUser,
//     UpdateBalance and the earn/borrow position listings.
//  2. A concrete implementation (see GRPCClient) that issues signed calls
//     through an agent and decodes the service's {ok}/{err} replies into
//     result.Result values.
//
// # Error Handling
//
// Transport failures are returned as errors (see the agent package for the
// sentinels). Application-level failures reported by the service are
// returned as the Err variant of a result.Result; IsAlreadyExists
// recognises the benign registration race.
package client
