package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/atm-services/internal/atmsvc/models"
	"github.com/avvvet/atm-services/internal/atmsvc/service"
	"github.com/avvvet/atm-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	ServiceTopic = "atm.service"
	ResultTopic  = "atm.result"
	StatusTopic  = "atm.status"
)

var errBadRequest = errors.New("bad request")

type Broker struct {
	Conn               *nats.Conn
	AccountService     *service.AccountService
	CardService        *service.CardService
	MoneyBoxService    *service.MoneyBoxService
	CashMachineService *service.CashMachineService
	MachineID          string // machine used when a request names none
}

func NewBroker(nc *nats.Conn, accountService *service.AccountService,
	cardService *service.CardService, moneyBoxService *service.MoneyBoxService,
	cashMachineService *service.CashMachineService, machineID string) *Broker {
	return &Broker{
		Conn:               nc,
		AccountService:     accountService,
		CardService:        cardService,
		MoneyBoxService:    moneyBoxService,
		CashMachineService: cashMachineService,
		MachineID:          machineID,
	}
}

// handles request coming from nats
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	var res *comm.WSMessage

	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		res = b.reply(&comm.WSMessage{Type: "unknown"}, nil, fmt.Errorf("%w: %s", errBadRequest, err))
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		res = b.Dispatch(ctx, msg)
	}

	payload, err := json.Marshal(res)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if msgNat.Reply != "" {
		if err := msgNat.Respond(payload); err != nil {
			log.Errorf("Error responding to %s: %s", msgNat.Reply, err)
		}
		return
	}
	b.Publish(ResultTopic, payload)
}

// Dispatch runs one request and builds its reply. It never returns nil.
func (b *Broker) Dispatch(ctx context.Context, msg *comm.WSMessage) *comm.WSMessage {
	data, err := b.handle(ctx, msg)
	return b.reply(msg, data, err)
}

func (b *Broker) handle(ctx context.Context, msg *comm.WSMessage) (interface{}, error) {
	switch msg.Type {
	case comm.TypeGetMoney:
		var request comm.GetMoneyRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}
		machine, err := b.machine(request.MachineID)
		if err != nil {
			return nil, err
		}

		w, err := b.CashMachineService.GetMoney(ctx, machine, request.Card, request.Pin, request.Amount)
		return comm.NewWithdrawalData(w, machine.Snapshot().Denominations()), err

	case comm.TypePutMoney:
		var request comm.PutMoneyRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}
		machine, err := b.machine(request.MachineID)
		if err != nil {
			return nil, err
		}

		balance, err := b.CashMachineService.PutMoney(ctx, machine, request.Card, request.Pin, request.Counts...)
		if err != nil {
			return nil, err
		}
		return comm.BalanceData{Balance: balance.StringFixed(2)}, nil

	case comm.TypeCheckBalance:
		var request comm.CardRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}
		machine, err := b.machine(request.MachineID)
		if err != nil {
			return nil, err
		}

		balance, err := b.CashMachineService.CheckBalance(ctx, machine, request.Card, request.Pin)
		if err != nil {
			return nil, err
		}
		return comm.BalanceData{Balance: balance.StringFixed(2)}, nil

	case comm.TypeChangePin:
		var request comm.ChangePinRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}
		machine, err := b.machine(request.MachineID)
		if err != nil {
			return nil, err
		}

		changed, err := b.CashMachineService.ChangePin(ctx, machine, request.Card, request.OldPin, request.NewPin)
		if err != nil {
			return nil, err
		}
		return comm.PinData{Changed: changed}, nil

	case comm.TypeOpenAccount:
		var request comm.OpenAccountRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}

		acc, err := b.AccountService.Open(ctx, request.Balance)
		if err != nil {
			return nil, err
		}
		return comm.AccountData{ID: acc.ID, Balance: acc.Balance.StringFixed(2)}, nil

	case comm.TypeCreateCard:
		var request comm.CreateCardRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}

		card, err := b.CardService.CreateCard(ctx, request.Number, request.AccountID, request.Pin)
		if err != nil {
			return nil, err
		}
		return comm.NewCardData(card), nil

	case comm.TypeLoadBox:
		var request comm.BoxRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}
		machine, err := b.machine(request.MachineID)
		if err != nil {
			return nil, err
		}

		box, err := b.MoneyBoxService.Load(ctx, machine, request.Counts...)
		if err != nil {
			return nil, err
		}
		return comm.NewBoxData(machine.ID, box), nil

	case comm.TypeBoxStatus:
		var request comm.BoxRequest
		if err := decode(msg, &request); err != nil {
			return nil, err
		}
		machine, err := b.machine(request.MachineID)
		if err != nil {
			return nil, err
		}
		return comm.NewBoxData(machine.ID, machine.Snapshot()), nil

	default:
		return nil, fmt.Errorf("%w: unknown message type %q", errBadRequest, msg.Type)
	}
}

func (b *Broker) reply(msg *comm.WSMessage, data interface{}, err error) *comm.WSMessage {
	res := &comm.WSMessage{
		Type:      comm.ResponseType(msg.Type),
		SocketId:  msg.SocketId,
		Status:    comm.Status(err),
		Error:     comm.PublicError(err),
		Timestamp: time.Now().UnixMilli(),
	}

	if errors.Is(err, errBadRequest) {
		res.Status = comm.StatusBadRequest
		res.Error = err.Error()
	}
	if res.Status == comm.StatusInternal || res.Status == comm.StatusRollbackFailed {
		log.Errorf("Error [Broker.%s] %s", msg.Type, err)
	}

	if data != nil {
		raw, merr := json.Marshal(data)
		if merr != nil {
			log.Errorf("Error [Broker.reply] unable to marshal %s data: %s", msg.Type, merr)
		} else {
			res.Data = raw
		}
	}
	return res
}

func (b *Broker) machine(id string) (*models.CashMachine, error) {
	if id == "" {
		id = b.MachineID
	}
	return b.MoneyBoxService.Machine(id)
}

func decode(msg *comm.WSMessage, v interface{}) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: %s", errBadRequest, err)
	}
	return nil
}

// RunHeartbeat publishes the stock of the default machine every interval
// until ctx is done.
func (b *Broker) RunHeartbeat(ctx context.Context, instanceID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msg, err := b.Heartbeat(instanceID)
			if err != nil {
				log.Errorf("Error [Broker.Heartbeat] %s", err)
				continue
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				log.Errorf("Error [Broker.Heartbeat] marshaling WSMessage: %s", err)
				continue
			}
			b.Publish(StatusTopic, payload)
		}
	}
}

func (b *Broker) Heartbeat(instanceID string) (*comm.WSMessage, error) {
	machine, err := b.machine("")
	if err != nil {
		return nil, err
	}

	now := time.Now()
	data, err := json.Marshal(comm.MachineHeartbeat{
		InstanceID: instanceID,
		Timestamp:  now.UnixMilli(),
		Box:        comm.NewBoxData(machine.ID, machine.Snapshot()),
	})
	if err != nil {
		return nil, err
	}

	return &comm.WSMessage{
		Type:      comm.TypeHeartbeat,
		Data:      data,
		Status:    comm.StatusOK,
		Timestamp: now.UnixMilli(),
	}, nil
}

// consume requests with a queue group so several instances share the load
func (b *Broker) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
