package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"menubot/internal/app"
	"menubot/internal/transport/telegram/router"
	logx "menubot/pkg/logx"
	"menubot/pkg/menu"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json or yaml")
	flag.Parse()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	registerMenus(a)
	a.Commands(
		router.Command{
			Name:        "menu",
			Aliases:     []string{"start"},
			Description: "open the main menu",
			Handle: func(ctx context.Context, req *router.Request) error {
				m, err := a.Registry().Render("main")
				if err != nil {
					return err
				}
				_, err = req.Sender.Send(ctx, req.Chat, m.Outgoing())
				return err
			},
		},
	)

	if err := a.Start(context.Background()); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	var reason app.StopReason
	select {
	case sig := <-sigs:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
		fmt.Println("fatal:", a.Err())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		os.Exit(1)
	}
}

func registerMenus(a *app.App) {
	reg := a.Registry()

	open := func(templateID string) menu.Handler {
		return func(ctx context.Context, p *menu.Press) error {
			m, err := reg.Render(templateID)
			if err != nil {
				return err
			}
			_, err = a.Sender().Edit(ctx, p.Callback.Ref(), m.Outgoing())
			return err
		}
	}
	choose := func(ctx context.Context, p *menu.Press) error {
		a.Logger().Info("language chosen", logx.String("lang", p.Payload), logx.Int64("from_id", p.Callback.FromID))
		return open("saved")(ctx, p)
	}
	back := func(ctx context.Context, p *menu.Press) error {
		_, err := a.Back(ctx, p.Callback.Ref())
		return err
	}

	reg.MustRegister("main", menu.NewTemplate().
		Text("<b>Main menu</b>").
		ParseMode("HTML").
		CB("Settings", open("settings")).
		CB("About", open("about")).
		Row().
		SwitchInline("Share", "menu"))

	reg.MustRegister("settings", menu.NewTemplate().
		Text("<b>Settings</b>\nPick a language.").
		ParseMode("HTML").
		CB("English", choose, "en").
		CB("Bahasa Indonesia", choose, "id").
		Row().
		CB("« Back", back))

	reg.MustRegister("saved", menu.NewTemplate().
		Text("Saved.").
		CB("« Back", back))

	reg.MustRegister("about", menu.NewTemplate().
		Text("Menus in this chat keep working after a restart.").
		URL("Source", "https://github.com/").
		Row().
		CB("« Back", back))
}
