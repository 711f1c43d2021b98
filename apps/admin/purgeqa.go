package main

import (
	"fmt"
	"time"
)

func (cli *commandLine) purgeQa(days int) error {
	deleted, err := cli.qaSvc.PurgeOlderThan(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return err
	}
	fmt.Printf("%d records deleted\n", deleted)
	return nil
}
