package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// CLI 实现 `moneta migrate <command>`，输出面向运维人员
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// command 是一个子命令；takesArg 为 true 时要求恰好一个整数参数
type command struct {
	name     string
	usage    string
	takesArg bool
	run      func(c *CLI, ctx context.Context, n int) error
}

var commands = []command{
	{name: "up", usage: "Apply all pending migrations",
		run: func(c *CLI, ctx context.Context, _ int) error { return c.RunUp(ctx) }},
	{name: "down", usage: "Roll back the last migration",
		run: func(c *CLI, ctx context.Context, _ int) error { return c.RunDown(ctx) }},
	{name: "down-all", usage: "Roll back every migration (drops user_documents)",
		run: func(c *CLI, ctx context.Context, _ int) error { return c.RunDownAll(ctx) }},
	{name: "steps", usage: "Apply (n > 0) or roll back (n < 0) n migrations", takesArg: true,
		run: func(c *CLI, ctx context.Context, n int) error { return c.RunSteps(ctx, n) }},
	{name: "goto", usage: "Migrate to version v", takesArg: true,
		run: func(c *CLI, ctx context.Context, n int) error {
			if n < 0 {
				return fmt.Errorf("goto: version must not be negative")
			}
			return c.RunGoto(ctx, uint(n))
		}},
	{name: "force", usage: "Record version v without running migrations", takesArg: true,
		run: func(c *CLI, ctx context.Context, n int) error { return c.RunForce(ctx, n) }},
	{name: "version", usage: "Show the current version",
		run: func(c *CLI, ctx context.Context, _ int) error { return c.RunVersion(ctx) }},
	{name: "status", usage: "List migrations and whether they are applied",
		run: func(c *CLI, ctx context.Context, _ int) error { return c.RunStatus(ctx) }},
	{name: "info", usage: "Summarize the migration state",
		run: func(c *CLI, ctx context.Context, _ int) error { return c.RunInfo(ctx) }},
}

// NewCLI 默认输出到标准输出
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput 替换输出目标，测试中使用
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// Usage 打印子命令列表
func (c *CLI) Usage() {
	fmt.Fprintln(c.output, "Usage: moneta migrate <command> [n]")
	fmt.Fprintln(c.output)
	fmt.Fprintln(c.output, "Commands:")
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	for _, cmd := range commands {
		name := cmd.name
		if cmd.takesArg {
			name += " <n>"
		}
		fmt.Fprintf(w, "  %s\t%s\n", name, cmd.usage)
	}
	_ = w.Flush()
}

// Run 分发子命令
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.Usage()
		return fmt.Errorf("missing migrate command")
	}

	name, rest := strings.ToLower(args[0]), args[1:]
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		n := 0
		if cmd.takesArg {
			if len(rest) != 1 {
				return fmt.Errorf("%s requires exactly one numeric argument", name)
			}
			v, err := strconv.Atoi(rest[0])
			if err != nil {
				return fmt.Errorf("%s: invalid number %q", name, rest[0])
			}
			n = v
		}
		return cmd.run(c, ctx, n)
	}

	c.Usage()
	return fmt.Errorf("unknown migrate command: %s", name)
}

func (c *CLI) RunUp(ctx context.Context) error {
	fmt.Fprintln(c.output, "Running migrations...")
	if err := c.migrator.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return c.printVersion(ctx, "Migrations complete.")
}

func (c *CLI) RunDown(ctx context.Context) error {
	fmt.Fprintln(c.output, "Rolling back last migration...")
	if err := c.migrator.Down(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return c.printVersion(ctx, "Rollback complete.")
}

func (c *CLI) RunDownAll(ctx context.Context) error {
	fmt.Fprintln(c.output, "Rolling back all migrations...")
	if err := c.migrator.DownAll(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	fmt.Fprintln(c.output, "All migrations rolled back.")
	return nil
}

func (c *CLI) RunSteps(ctx context.Context, n int) error {
	switch {
	case n > 0:
		fmt.Fprintf(c.output, "Applying %d migration(s)...\n", n)
	case n < 0:
		fmt.Fprintf(c.output, "Rolling back %d migration(s)...\n", -n)
	default:
		return fmt.Errorf("steps: n must not be zero")
	}
	if err := c.migrator.Steps(ctx, n); err != nil {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return c.printVersion(ctx, "Complete.")
}

func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	fmt.Fprintf(c.output, "Migrating to version %d...\n", version)
	if err := c.migrator.Goto(ctx, version); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return c.printVersion(ctx, "Migration complete.")
}

func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	fmt.Fprintf(c.output, "Version forced to %d\n", version)
	return nil
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	switch {
	case version == 0:
		fmt.Fprintln(c.output, "No migrations applied yet.")
	case dirty:
		fmt.Fprintf(c.output, "Current version: %d (dirty)\n", version)
	default:
		fmt.Fprintf(c.output, "Current version: %d\n", version)
	}
	return nil
}

// RunStatus 列出每个迁移并附带汇总行
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
	for _, s := range statuses {
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, stateLabel(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get info: %w", err)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "current version:\t%d\n", info.CurrentVersion)
	fmt.Fprintf(w, "dirty:\t%v\n", info.Dirty)
	fmt.Fprintf(w, "applied:\t%d/%d\n", info.AppliedMigrations, info.TotalMigrations)
	fmt.Fprintf(w, "pending:\t%d\n", info.PendingMigrations)
	return w.Flush()
}

func stateLabel(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return "dirty"
	case s.Applied:
		return "applied"
	default:
		return "pending"
	}
}

func (c *CLI) printVersion(ctx context.Context, prefix string) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "%s Current version: %d\n", prefix, info.CurrentVersion)
	return nil
}
