// Package tabguard scores browser tab URLs for phishing risk.
//
// Every URL goes through a fixed set of heuristic rules. When a model
// directory is configured, a local classifier adds its own verdict, and
// when a Hugging Face token is configured, suspicious URLs are also sent
// to a remote zero-shot classifier.
//
// Quick start:
//
//	g, err := tabguard.New(tabguard.WithModelDir("models/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer g.Close()
//
//	res := g.ScanURL(ctx, "http://login.paypal-secure-verify.tk/account@evil.com")
//	fmt.Println(res.Risk) // danger
//
// A Guard is safe for concurrent use. Create once, reuse across scans.
package tabguard
