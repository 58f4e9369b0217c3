package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Validate checks configuration values for consistency.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if strings.TrimSpace(c.Storage.BucketDir) == "" {
		problems = append(problems, "storage.bucket_dir must not be empty")
	}

	if len(c.Schedule.Slots) == 0 {
		problems = append(problems, "schedule.slots must list at least one HH:MM time")
	}
	minutes := make([]int, 0, len(c.Schedule.Slots))
	for _, slot := range c.Schedule.Slots {
		m, err := ParseSlot(slot)
		if err != nil {
			problems = append(problems, fmt.Sprintf("schedule.slots: %v", err))
			continue
		}
		minutes = append(minutes, m)
	}
	if len(minutes) == len(c.Schedule.Slots) && !sort.IntsAreSorted(minutes) {
		problems = append(problems, "schedule.slots must be ordered ascending")
	}
	for i := 1; i < len(minutes); i++ {
		if minutes[i] == minutes[i-1] {
			problems = append(problems, fmt.Sprintf("schedule.slots: duplicate slot %s", c.Schedule.Slots[i]))
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("schedule.timezone: unknown zone %q", c.Schedule.Timezone))
	}

	if c.Workflow.CheckInterval <= 0 {
		problems = append(problems, "workflow.check_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		problems = append(problems, "workflow.error_retry_interval must be positive")
	}

	for name, acct := range c.XAPI.Accounts {
		if strings.TrimSpace(acct.AccessToken) == "" || strings.TrimSpace(acct.AccessSecret) == "" {
			problems = append(problems, fmt.Sprintf("x_api.accounts.%s: access_token and access_secret are required", name))
		}
	}
	for name, acct := range c.Instagram.Accounts {
		if strings.TrimSpace(acct.BusinessID) == "" {
			problems = append(problems, fmt.Sprintf("instagram.accounts.%s: business_id is required", name))
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ParseSlot parses an HH:MM time of day and returns minutes past midnight.
func ParseSlot(value string) (int, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("slot %q must be HH:MM", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// SlotMinutes returns the configured slots as minutes past midnight.
func (s Schedule) SlotMinutes() ([]int, error) {
	out := make([]int, 0, len(s.Slots))
	for _, slot := range s.Slots {
		m, err := ParseSlot(slot)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Location resolves the configured reference timezone.
func (s Schedule) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}

// XAccountCreds resolves the credential set for one X account. An unknown
// account name or an incomplete set is an error; publishing must not start
// without a full credential set.
func (c *Config) XAccountCreds(name string) (XAccount, error) {
	if strings.TrimSpace(c.XAPI.ConsumerKey) == "" || strings.TrimSpace(c.XAPI.ConsumerSecret) == "" {
		return XAccount{}, errors.New("x_api.consumer_key and x_api.consumer_secret are not configured")
	}
	acct, ok := c.XAPI.Accounts[name]
	if !ok {
		return XAccount{}, fmt.Errorf("x account %q is not configured", name)
	}
	if strings.TrimSpace(acct.AccessToken) == "" || strings.TrimSpace(acct.AccessSecret) == "" {
		return XAccount{}, fmt.Errorf("x account %q has an incomplete credential set", name)
	}
	return acct, nil
}

// IGAccountID resolves the business account id for one Instagram account.
func (c *Config) IGAccountID(name string) (string, error) {
	if strings.TrimSpace(c.Instagram.AccessToken) == "" {
		return "", errors.New("instagram.access_token is not configured")
	}
	acct, ok := c.Instagram.Accounts[name]
	if !ok || strings.TrimSpace(acct.BusinessID) == "" {
		return "", fmt.Errorf("instagram account %q is not configured", name)
	}
	return acct.BusinessID, nil
}
