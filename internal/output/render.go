package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dicklesworthstone/gatekeeper/internal/core"
	"github.com/Dicklesworthstone/gatekeeper/internal/ledger"
	"github.com/Dicklesworthstone/gatekeeper/internal/utils"
)

// WriteResponse renders a gatekeeper response.
func (w *Writer) WriteResponse(resp *core.Response) error {
	if w.format != FormatText {
		return w.Write(resp)
	}

	id := "<none>"
	if resp.CommandID != nil {
		id = *resp.CommandID
	}
	out := w.errOut
	fmt.Fprintf(out, "%s %s\n", w.styles.Badge(resp.Status), w.styles.Bold.Render(id))
	if resp.RiskLevel != "" {
		fmt.Fprintf(out, "  risk:     %s\n", w.styles.RiskStyle(resp.RiskLevel))
	}
	if resp.ConstructedCommand != nil {
		fmt.Fprintf(out, "  command:  %s\n", resp.ConstructedCommand.String())
	}
	if resp.ApprovalKey != "" {
		fmt.Fprintf(out, "  approval: %s\n", resp.ApprovalKey)
	}
	if resp.ExitCode != nil && *resp.ExitCode != 0 {
		fmt.Fprintf(out, "  exit:     %d\n", *resp.ExitCode)
	}
	if resp.Message != "" {
		fmt.Fprintf(out, "  %s\n", resp.Message)
	}
	if resp.Error != nil {
		fmt.Fprintf(out, "  %s %s\n", w.styles.Fail.Render(resp.Error.Code), resp.Error.Message)
	}
	if resp.Output != "" {
		fmt.Fprintln(out, w.styles.Muted.Render("  --- output ---"))
		for _, line := range strings.Split(utils.SanitizeInput(resp.Output), "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	return nil
}

// WriteRecords renders ledger records as a table.
func (w *Writer) WriteRecords(records []ledger.Record) error {
	if w.format != FormatText {
		if records == nil {
			records = []ledger.Record{}
		}
		return w.Write(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w.errOut, w.styles.Muted.Render("no approval records"))
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Key,
			w.styles.Badge(string(r.Status)),
			r.CreatedAt.Local().Format(time.DateTime),
			utils.SanitizeInput(r.Description),
		})
	}
	return WriteTable(w.errOut, []string{"KEY", "STATUS", "CREATED", "DESCRIPTION"}, rows)
}

// WriteLedgerSummary prints per-status record counts in text mode. Other formats
// carry the records themselves, so nothing is written.
func (w *Writer) WriteLedgerSummary(counts map[ledger.Status]int) {
	if w.format != FormatText {
		return
	}
	parts := make([]string, 0, 4)
	for _, s := range []ledger.Status{ledger.StatusPending, ledger.StatusApproved, ledger.StatusDenied, ledger.StatusConsumed} {
		parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
	}
	fmt.Fprintln(w.errOut, w.styles.Muted.Render(strings.Join(parts, ", ")))
}

// WriteRecord renders a single ledger record, or the not_found status when rec is nil.
func (w *Writer) WriteRecord(key string, rec *ledger.Record) error {
	if rec == nil {
		if w.format != FormatText {
			return w.Write(map[string]any{"key": key, "status": ledger.StatusNotFound})
		}
		fmt.Fprintf(w.errOut, "%s %s\n", w.styles.Badge(string(ledger.StatusNotFound)), key)
		return nil
	}
	if w.format != FormatText {
		return w.Write(rec)
	}

	out := w.errOut
	fmt.Fprintf(out, "%s %s\n", w.styles.Badge(string(rec.Status)), w.styles.Bold.Render(rec.Key))
	fmt.Fprintf(out, "  command:  %s\n", rec.CommandID)
	fmt.Fprintf(out, "  request:  %s\n", rec.RequestID)
	fmt.Fprintf(out, "  created:  %s\n", rec.CreatedAt.Local().Format(time.DateTime))
	if rec.DecidedAt != nil {
		fmt.Fprintf(out, "  decided:  %s\n", rec.DecidedAt.Local().Format(time.DateTime))
	}
	if rec.ConsumedAt != nil {
		fmt.Fprintf(out, "  used:     %s\n", rec.ConsumedAt.Local().Format(time.DateTime))
	}
	if rec.Description != "" {
		fmt.Fprintf(out, "  %s\n", utils.SanitizeInput(rec.Description))
	}
	return nil
}

// WritePolicy renders the effective allow-list and risk policy.
func (w *Writer) WritePolicy(p *core.PolicyExport) error {
	if w.format != FormatText {
		return w.Write(p)
	}

	out := w.errOut
	fmt.Fprintf(out, "%s (default risk: %s, sha256 %s)\n",
		w.styles.Bold.Render("Allow-list"), w.styles.RiskStyle(p.Default), shortHash(p.SHA256))

	rows := make([][]string, 0, len(p.Commands))
	for _, c := range p.Commands {
		approval := "no"
		if c.HumanApprovalRequired {
			approval = "yes"
		}
		params := make([]string, 0, len(c.Params))
		for _, prm := range c.Params {
			params = append(params, prm.Name)
		}
		rows = append(rows, []string{
			c.ID,
			w.styles.RiskStyle(c.RiskLevel),
			approval,
			strings.Join(append([]string{c.Executable}, c.Args...), " "),
			strings.Join(params, ","),
		})
	}
	return WriteTable(out, []string{"ID", "RISK", "APPROVAL", "COMMAND", "PARAMS"}, rows)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
