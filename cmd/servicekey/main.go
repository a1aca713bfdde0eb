// Command servicekey prints the bcrypt hash to configure as SERVICE_KEY_HASH
// for a given records-service key.
//
//	servicekey -key "$REMOTE_SERVICE_KEY"
//	echo -n "$REMOTE_SERVICE_KEY" | servicekey
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"reviewdesk/auth"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("servicekey: %v", err)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("servicekey", flag.ContinueOnError)
	key := fs.String("key", "", "service key to hash; read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *key == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read key: %w", err)
		}
		*key = strings.TrimSpace(line)
	}
	if *key == "" {
		return errors.New("no key given")
	}

	hash, err := auth.HashServiceKey(*key)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}
