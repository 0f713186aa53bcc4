package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	config "github.com/avvvet/atm-services/configs"
	"github.com/avvvet/atm-services/internal/atmsvc/broker"
	atmconfig "github.com/avvvet/atm-services/internal/atmsvc/config"
	"github.com/avvvet/atm-services/internal/comm"
	natscli "github.com/avvvet/atm-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

const SERVICE_NAME = "atmctl"

// atmctl sends one request to the atm service over NATS and prints the reply.
//
//	atmctl -type open-account -data '{"balance":"1000"}'
//	atmctl -type get-money -data '{"card":"4000123412341234","pin":"0000","amount":"500"}'
func main() {
	typ := flag.String("type", comm.TypeBoxStatus, "message type")
	data := flag.String("data", "{}", "request payload as JSON")
	timeout := flag.Duration("timeout", 10*time.Second, "reply timeout")
	flag.Parse()

	config.LoadEnv(SERVICE_NAME)
	cfg, err := atmconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if !json.Valid([]byte(*data)) {
		log.Fatalf("-data is not valid JSON")
	}

	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Close()

	payload, err := json.Marshal(&comm.WSMessage{
		Type:      *typ,
		Data:      json.RawMessage(*data),
		SocketId:  SERVICE_NAME,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		log.Fatalf("error marshaling WSMessage: %v", err)
	}

	reply, err := n.Conn.Request(broker.ServiceTopic, payload, *timeout)
	if err != nil {
		log.Fatalf("error requesting %s: %v", *typ, err)
	}

	res := &comm.WSMessage{}
	if err := json.Unmarshal(reply.Data, res); err != nil {
		log.Fatalf("error decoding reply: %v", err)
	}

	fmt.Printf("%s %s\n", res.Type, res.Status)
	if res.Error != "" {
		fmt.Println(res.Error)
	}
	if len(res.Data) > 0 {
		fmt.Println(string(res.Data))
	}
	if res.Status != comm.StatusOK {
		os.Exit(2)
	}
}
