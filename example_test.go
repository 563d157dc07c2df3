package db_test

import (
	"context"
	"fmt"

	db "github.com/TechXTT/tormsql"
	"github.com/TechXTT/tormsql/pkg/session"
)

type Account struct {
	Id    int64
	Email string
}

func Example() {
	ctx := context.Background()
	conn, err := db.NewDB("sqlite", "file:example?mode=memory&cache=shared")
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	conn.Conn.SetMaxOpenConns(1)

	err = conn.AutoCommit(ctx, func(s session.Session) error {
		_, err := s.Update(ctx, "create table account(id integer primary key autoincrement, email text not null)")
		return err
	})
	if err != nil {
		panic(err)
	}

	err = conn.LocalTx(ctx, func(s session.Session) error {
		ids, err := s.BatchAndReturnGeneratedKey(ctx, "insert into account(email) values (?)",
			[]any{"alice@example.com"}, []any{"bob@example.com"})
		fmt.Println("generated:", ids)
		return err
	})
	if err != nil {
		panic(err)
	}

	err = conn.ReadOnly(ctx, func(s session.Session) error {
		accounts, err := db.Select[Account](ctx, s)
		for _, a := range accounts {
			fmt.Println(a.Id, a.Email)
		}
		return err
	})
	if err != nil {
		panic(err)
	}
	// Output:
	// generated: [1 2]
	// 1 alice@example.com
	// 2 bob@example.com
}
