package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/gomarket/cartstore"
	"github.com/gomarket/cartstore/internal/codec"
	"github.com/gomarket/cartstore/pkg/cart"
	"github.com/gomarket/cartstore/pkg/log"
	"github.com/gomarket/cartstore/plugins/filewatch"
)

func (c *cli) listCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(store *cart.Store) error {
				current, err := store.Cart()
				if err != nil {
					return err
				}
				if asJSON {
					raw, err := codec.NewJSON().Encode(current)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.out, raw)
					return nil
				}
				return printCart(c.out, current)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored JSON representation")
	return cmd
}

func (c *cli) addCommand() *cobra.Command {
	var (
		id       string
		title    string
		price    string
		imageURL string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product, or one more of it when already in the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			if id == "" {
				id = uuid.NewString()
			}
			p := cart.Product{ID: id, Title: title, ImageURL: imageURL, Price: amount}

			return c.withStore(cmd.Context(), func(store *cart.Store) error {
				if err := store.AddToCart(p); err != nil {
					return err
				}
				return c.printQuantity(store, id)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "product id (default: random UUID)")
	cmd.Flags().StringVar(&title, "title", "", "product title")
	cmd.Flags().StringVar(&price, "price", "", "unit price, e.g. 19.90")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "product image URL")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func (c *cli) incCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inc <id>",
		Short: "Increase the quantity of an entry by one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(store *cart.Store) error {
				if err := store.Increment(args[0]); err != nil {
					return err
				}
				return c.printQuantity(store, args[0])
			})
		},
	}
}

func (c *cli) decCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dec <id>",
		Short: "Decrease the quantity of an entry by one, removing it at zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(store *cart.Store) error {
				if err := store.Decrement(args[0]); err != nil {
					return err
				}
				return c.printQuantity(store, args[0])
			})
		},
	}
}

func (c *cli) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(store *cart.Store) error {
				return store.Clear()
			})
		},
	}
}

func (c *cli) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the cart whenever another process changes it",
		Long:  "Print the cart whenever another process changes it. Requires the bunt or file backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := cartstore.Backend(c.cfg.Backend)
			if backend != cartstore.BackendBunt && backend != cartstore.BackendFile {
				return fmt.Errorf("watch requires the bunt or file backend, not %s", backend)
			}

			ctx := cmd.Context()
			onChange := func(path string) {
				if err := c.printStored(ctx); err != nil {
					c.logger.Error("failed to read changed cart", log.String("path", path), log.Err(err))
				}
			}

			return c.withStore(ctx, func(store *cart.Store) error {
				current, err := store.Cart()
				if err != nil {
					return err
				}
				if err := printCart(c.out, current); err != nil {
					return err
				}
				c.logger.Info("watching for changes, press Ctrl+C to stop")
				<-ctx.Done()
				return nil
			}, filewatch.WithFileWatch(filewatch.Config{OnChange: onChange}))
		},
	}
}

// printStored reads the cart through a fresh backend handle, so changes
// written by other processes are seen.
func (c *cli) printStored(ctx context.Context) error {
	cfg := c.cfg.StoreConfig()
	kv, err := cartstore.OpenBackend(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer kv.Close()

	raw, _, err := kv.Get(ctx, cfg.Key)
	if err != nil {
		return err
	}
	current, err := codec.NewJSON().Decode(raw)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "---")
	return printCart(c.out, current)
}

func (c *cli) printQuantity(store *cart.Store, id string) error {
	current, err := store.Cart()
	if err != nil {
		return err
	}
	if e, ok := current.Find(id); ok {
		fmt.Fprintf(c.out, "%s\t%s\tquantity %d\n", e.ID, e.Title, e.Quantity)
	} else {
		fmt.Fprintf(c.out, "%s\tnot in cart\n", id)
	}
	return nil
}

func printCart(w io.Writer, c cart.Cart) error {
	if c.IsEmpty() {
		_, err := fmt.Fprintln(w, "cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tQTY\tTOTAL")
	for _, e := range c.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.Title, e.Price.StringFixed(2), e.Quantity, e.LineTotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t\t%d\t%s\n", c.TotalQuantity(), c.Subtotal().StringFixed(2))
	return tw.Flush()
}
