package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/microrm"
	"github.com/Konsultn-Engineering/microrm/config"
	"github.com/Konsultn-Engineering/microrm/engine"
)

// withEmployees opens the database from the loaded configuration and hands
// the typed Employee table to fn.
func withEmployees(cmd *cobra.Command, fn func(ctx context.Context, t *engine.Table[Employee]) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := microrm.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	employees, err := engine.For[Employee](db.Engine)
	if err != nil {
		return err
	}
	return fn(ctx, employees)
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the Employees table unless it exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEmployees(cmd, func(ctx context.Context, t *engine.Table[Employee]) error {
			exists, err := t.Exists(ctx)
			if err != nil {
				return err
			}
			if exists {
				fmt.Println("table already exists")
				return nil
			}
			if err := t.Create(ctx); err != nil {
				return fmt.Errorf("failed to create table: %w", err)
			}
			fmt.Println("table created")
			return nil
		})
	},
}

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Drop the Employees table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEmployees(cmd, func(ctx context.Context, t *engine.Table[Employee]) error {
			if err := t.Drop(ctx); err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
			fmt.Println("table dropped")
			return nil
		})
	},
}

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample employees in one batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount < 1 {
			return fmt.Errorf("--count must be at least 1, got: %d", seedCount)
		}
		return withEmployees(cmd, func(ctx context.Context, t *engine.Table[Employee]) error {
			batch := make([]*Employee, seedCount)
			for i := range batch {
				batch[i] = &Employee{
					FullName:    fmt.Sprintf("Employee %d", i+1),
					Email:       fmt.Sprintf("employee%d@example.com", i+1),
					YearsWorked: i % 10,
					HiredOn:     time.Now().UTC().AddDate(-(i % 10), 0, 0),
				}
			}

			n, err := t.InsertMany(ctx, batch, false)
			if err != nil {
				return fmt.Errorf("failed to seed employees: %w", err)
			}
			fmt.Printf("inserted %d employees (ids %d-%d)\n", n, batch[0].EmployeeId, batch[len(batch)-1].EmployeeId)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every employee",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEmployees(cmd, func(ctx context.Context, t *engine.Table[Employee]) error {
			employees, err := t.SelectAll(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tEMAIL\tYEARS\tHIRED")
			for _, e := range employees {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", e.EmployeeId, e.FullName, e.Email, e.YearsWorked, e.HiredOn.Format("2006-01-02"))
			}
			return w.Flush()
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Count employees",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEmployees(cmd, func(ctx context.Context, t *engine.Table[Employee]) error {
			n, err := t.CountAll(ctx)
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		})
	},
}

var tenureCmd = &cobra.Command{
	Use:   "tenure",
	Short: "Add one year of service to every employee in one batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEmployees(cmd, func(ctx context.Context, t *engine.Table[Employee]) error {
			employees, err := t.SelectAll(ctx)
			if err != nil {
				return err
			}

			batch := make([]*Employee, len(employees))
			for i := range employees {
				employees[i].YearsWorked++
				batch[i] = &employees[i]
			}

			n, err := t.UpdateMany(ctx, batch)
			if err != nil {
				return err
			}
			fmt.Printf("updated %d employees\n", n)
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 10, "number of employees to insert")
}
