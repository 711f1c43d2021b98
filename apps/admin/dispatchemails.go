package main

import "fmt"

// dispatchEmails sends due scheduled emails once; meant for cron when the
// in-process worker is not running.
func (cli *commandLine) dispatchEmails() error {
	sent, failed, err := cli.schedmailSvc.DispatchDue()
	if err != nil {
		return err
	}
	fmt.Printf("%d sent, %d failed\n", sent, failed)
	return nil
}
