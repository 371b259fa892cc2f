// Package cloud provides the HTTP transport for the Luke Roberts cloud API.
//
// This is a hand-written client because the vendor publishes no Go SDK.
// It is transport only: no caching and no retries. Lamp state caching lives
// in package lamp, fleet bookkeeping in package fleet.
//
// All requests are authenticated with a bearer token held by a Credential.
// The Credential is shared by reference, so swapping the token affects every
// request issued after the swap.
package cloud
