// Package ancapi is a client for the ANC backend REST API.
//
// The client injects the X-API-Key header when a key is set, returns the
// parsed JSON body of successful calls unchanged, and converts non-2xx
// responses into *Error carrying the server's "error" message.
//
//	client := ancapi.NewClient("http://localhost:5000",
//	    ancapi.WithCredentialStore(store),
//	)
//
//	status, err := client.Status(ctx)
//	if err != nil {
//	    if e, ok := ancapi.AsError(err); ok {
//	        log.Printf("backend said: %s", e.Message)
//	    }
//	    return err
//	}
//
// Every error is logged before it is returned. No request is retried.
package ancapi
