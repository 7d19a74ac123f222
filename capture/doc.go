/*
Package capture drives a bounded live capture off one network interface and
dumps every frame into a pcap file.

example:

	params, err := capture.NewParameters("eth0", "out.pcap", 100, capture.WithPromiscuous(true))
	if err != nil {
		// handle error
	}
	engine, err := capture.NewEngine(params)
	if err != nil {
		// handle error
	}
	res, err := engine.Start(ctx)
	// or
	errCh := engine.StartBackground(ctx) // runs in the background
	select {
	case err := <-errCh:
		// nil once the run is over
	case <-quit:
		//
	}
*/
package capture // import github.com/vearne/pcapkit/capture
