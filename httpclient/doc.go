// Package httpclient is the transport under the authenticated request
// pipeline. A Client issues exactly one HTTP exchange per Do call. Retries,
// credential renewal and JSON decoding live in the rest subpackage.
//
// Do reports failures in two shapes, decided here once:
//
//   - *StatusError: the server answered with a non-2xx status
//   - *ConnectionError: no response was received (refused, DNS, timeout)
//
// Normalize turns either, or any other error, into an *errors.Error.
//
//	client, _ := httpclient.New(httpclient.Config{BaseURL: "https://api.example.com"})
//	resp, err := client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
//	if err != nil {
//	    return httpclient.Normalize(err)
//	}
package httpclient
