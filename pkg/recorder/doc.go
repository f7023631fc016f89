// Package recorder records HTTP traffic into recording stores.
//
// A Recorder owns one recording.Store. Start patches a shared transport
// variable (http.DefaultTransport unless configured otherwise) so that every
// request sent through it is recorded; Stop undoes that. Any number of
// recorders may be started on the same patch point: the transport is patched
// once when the first one starts and restored when the last one stops.
//
// While several recorders are active, each request is fingerprinted once per
// recorder, sent once, and its response is captured once. All recorders
// share the same capture handle, so each store sees every representation the
// caller reads without any recorder consuming the body on its own.
//
//	rec, err := recorder.New(recorder.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	rec.Start()
//	resp, err := http.Get("https://api.example.com/users/1")
//	// read resp.Body as usual
//	rec.Stop()
//	err = recording.Save("users.json", rec.Export())
//
// Transport records a single client without touching any shared variable:
//
//	client := &http.Client{Transport: rec.Transport(nil)}
package recorder
