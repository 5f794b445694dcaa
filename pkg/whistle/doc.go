// Package whistle flags anomalous log lines and learns to stay quiet about
// the ones that are not.
//
// Quick start:
//
//	a, err := whistle.New(
//	    whistle.WithOpenAI("", os.Getenv("OPENAI_API_KEY"), "gpt-4o-mini"),
//	    whistle.WithSlack(os.Getenv("SLACK_WEBHOOK_URL")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	res := a.Check(ctx, "kernel: Out of memory: Killed process 1234 (postgres)")
//	fmt.Println(res.Anomaly, res.Reason)
//
// Lines matching an ignore rule never reach the classifier in Analyze, and
// any classifier verdict for a matching line is overridden. When the
// classifier proposes a pattern for a benign line it becomes a new rule
// immediately, so the next matching line is silenced. Use WithRuleSaver to
// keep learned rules across restarts.
//
// An Analyzer is safe for concurrent use; calls are processed one at a time.
package whistle
