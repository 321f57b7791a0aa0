package main

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/quizroom/core"
	"github.com/trezcool/quizroom/core/user"
)

var errInvalidRole = errors.New("role must be one of: admin, teacher, student")

type newUserArgs struct {
	username, email, role string
	firstName, lastName   string
	password              string
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(args newUserArgs) error {
	ctx := context.Background()
	uname := core.CleanString(args.username, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)
	role := core.CleanString(args.role, true /* lower */)
	if !core.ContainsString(user.AllRoles, role) {
		return errInvalidRole
	}

	now := time.Now().UTC()
	exists := true
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		exists = false
		usr = user.User{Username: uname, Email: email, CreatedAt: now}
	}

	if name := core.CleanString(args.firstName); name != "" {
		usr.FirstName = name
	}
	if name := core.CleanString(args.lastName); name != "" {
		usr.LastName = name
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(args.password); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
