package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesainslie/tend/pkg/tend/runner"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// toolScanner holds what every package scanner shares.
type toolScanner struct {
	source types.Source
	tool   string
	args   []string
	parse  func([]byte) ([]types.Record, error)
	run    runner.Runner
}

func (s *toolScanner) Source() types.Source { return s.source }

func (s *toolScanner) Available() bool {
	_, err := s.run.LookPath(s.tool)
	return err == nil
}

func (s *toolScanner) Scan(ctx context.Context) ([]types.Record, error) {
	if !s.Available() {
		return nil, fmt.Errorf("%w: %s (%s not found)", types.ErrUnavailable, s.source, s.tool)
	}

	logger.Debug("scanning source", "source", s.source)
	out, err := s.run.Run(ctx, s.tool, s.args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrScanFailed, s.source, runner.Describe(out, err))
	}

	recs, err := s.parse(out.Stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrScanFailed, s.source, err)
	}
	for i := range recs {
		recs[i].Domain = types.DomainPackages
		recs[i].Source = s.source
	}
	logger.Info("scan complete", "source", s.source, "records", len(recs))
	return recs, nil
}

// aptFormat is the dpkg-query output format: name, version, status, size (KiB).
const aptFormat = "${Package}\t${Version}\t${db:Status-Status}\t${Installed-Size}\t${binary:Summary}\n"

// NewApt creates the apt scanner backed by dpkg-query.
func NewApt(run runner.Runner) Scanner {
	return &toolScanner{
		source: types.SourceApt,
		tool:   "dpkg-query",
		args:   []string{"-W", "-f=" + aptFormat},
		parse:  parseDpkgQuery,
		run:    run,
	}
}

// NewFlatpak creates the flatpak scanner.
func NewFlatpak(run runner.Runner) Scanner {
	return &toolScanner{
		source: types.SourceFlatpak,
		tool:   "flatpak",
		args:   []string{"list", "--app", "--columns=application,version"},
		parse:  parseFlatpakList,
		run:    run,
	}
}

// NewSnap creates the snap scanner.
func NewSnap(run runner.Runner) Scanner {
	return &toolScanner{
		source: types.SourceSnap,
		tool:   "snap",
		args:   []string{"list"},
		parse:  parseSnapList,
		run:    run,
	}
}

func parseDpkgQuery(data []byte) ([]types.Record, error) {
	var recs []types.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed dpkg-query line %q", line)
		}
		status := strings.TrimSpace(fields[2])
		if status == "not-installed" {
			continue
		}
		rec := types.Record{
			Name:    strings.TrimSpace(fields[0]),
			Version: strings.TrimSpace(fields[1]),
			Status:  status,
		}
		if len(fields) > 3 {
			if kib, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64); err == nil {
				rec.Size = kib * 1024
			}
		}
		if len(fields) > 4 {
			rec.Description = strings.TrimSpace(fields[4])
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}

func parseFlatpakList(data []byte) ([]types.Record, error) {
	var recs []types.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Split(sc.Text(), "\t")
		name := strings.TrimSpace(fields[0])
		if name == "" || name == "Application ID" {
			continue
		}
		rec := types.Record{Name: name, Status: types.StatusInstalled}
		if len(fields) > 1 {
			rec.Version = strings.TrimSpace(fields[1])
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}

func parseSnapList(data []byte) ([]types.Record, error) {
	var recs []types.Record
	sc := bufio.NewScanner(bytes.NewReader(data))
	header := true
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if header {
			header = false
			if fields[0] == "Name" {
				continue
			}
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed snap list line %q", sc.Text())
		}
		rec := types.Record{Name: fields[0], Version: fields[1], Status: types.StatusInstalled}
		if len(fields) >= 6 && strings.Contains(fields[5], "disabled") {
			rec.Status = "disabled"
		}
		recs = append(recs, rec)
	}
	return recs, sc.Err()
}
