package thriftapi

import (
	"context"
	"fmt"

	"github.com/apache/thrift/lib/go/thrift"
)

// Wire structs, mirroring thetalkingdrone.thrift:
//
//	struct Location { 1: double x, 2: double y, 3: double z }
//	struct TokenRequest { 1: string name, 2: string role }
//	struct TokenResponse { 1: string token, 2: i64 expiresAt }
//	struct DroneRequest {
//	  1: string authToken, 2: string droneId, 3: optional Location location,
//	  4: double altitude, 5: double heading, 6: bool relative }
//	struct Telemetry {
//	  1: string droneId, 2: string name, 3: string state, 4: Location position,
//	  5: double heading, 6: double speed, 7: double fuelLevel, 8: double fuelPercentage,
//	  9: string fuelStatus, 10: i64 updatedAtMillis }
//	struct TelemetryList { 1: list<Telemetry> drones }
//
// Every call takes its request as field 1 of the args struct and returns its
// result as field 0.

type Location struct {
	X, Y, Z float64
}

func (l *Location) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, "Location",
		doubleField("x", 1, l.X),
		doubleField("y", 2, l.Y),
		doubleField("z", 3, l.Z),
	)
}

func (l *Location) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.DOUBLE:
			l.X, err = p.ReadDouble(ctx)
		case id == 2 && t == thrift.DOUBLE:
			l.Y, err = p.ReadDouble(ctx)
		case id == 3 && t == thrift.DOUBLE:
			l.Z, err = p.ReadDouble(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

type TokenRequest struct {
	Name string
	Role string
}

func (r *TokenRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, "TokenRequest",
		stringField("name", 1, r.Name),
		stringField("role", 2, r.Role),
	)
}

func (r *TokenRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.STRING:
			r.Name, err = p.ReadString(ctx)
		case id == 2 && t == thrift.STRING:
			r.Role, err = p.ReadString(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

type TokenResponse struct {
	Token     string
	ExpiresAt int64
}

func (r *TokenResponse) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, "TokenResponse",
		stringField("token", 1, r.Token),
		i64Field("expiresAt", 2, r.ExpiresAt),
	)
}

func (r *TokenResponse) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.STRING:
			r.Token, err = p.ReadString(ctx)
		case id == 2 && t == thrift.I64:
			r.ExpiresAt, err = p.ReadI64(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

// DroneRequest is shared by every fleet and flight call. Unused fields are ignored.
type DroneRequest struct {
	AuthToken string
	DroneID   string
	Location  *Location
	Altitude  float64
	Heading   float64
	Relative  bool
}

func (r *DroneRequest) Write(ctx context.Context, p thrift.TProtocol) error {
	fields := []field{
		stringField("authToken", 1, r.AuthToken),
		stringField("droneId", 2, r.DroneID),
	}
	if r.Location != nil {
		fields = append(fields, structField("location", 3, r.Location))
	}
	fields = append(fields,
		doubleField("altitude", 4, r.Altitude),
		doubleField("heading", 5, r.Heading),
		boolField("relative", 6, r.Relative),
	)
	return writeStruct(ctx, p, "DroneRequest", fields...)
}

func (r *DroneRequest) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && t == thrift.STRING:
			r.AuthToken, err = p.ReadString(ctx)
		case id == 2 && t == thrift.STRING:
			r.DroneID, err = p.ReadString(ctx)
		case id == 3 && t == thrift.STRUCT:
			r.Location = &Location{}
			err = r.Location.Read(ctx, p)
		case id == 4 && t == thrift.DOUBLE:
			r.Altitude, err = p.ReadDouble(ctx)
		case id == 5 && t == thrift.DOUBLE:
			r.Heading, err = p.ReadDouble(ctx)
		case id == 6 && t == thrift.BOOL:
			r.Relative, err = p.ReadBool(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

type Telemetry struct {
	DroneID         string
	Name            string
	State           string
	Position        Location
	Heading         float64
	Speed           float64
	FuelLevel       float64
	FuelPercentage  float64
	FuelStatus      string
	UpdatedAtMillis int64
}

func (t *Telemetry) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, "Telemetry",
		stringField("droneId", 1, t.DroneID),
		stringField("name", 2, t.Name),
		stringField("state", 3, t.State),
		structField("position", 4, &t.Position),
		doubleField("heading", 5, t.Heading),
		doubleField("speed", 6, t.Speed),
		doubleField("fuelLevel", 7, t.FuelLevel),
		doubleField("fuelPercentage", 8, t.FuelPercentage),
		stringField("fuelStatus", 9, t.FuelStatus),
		i64Field("updatedAtMillis", 10, t.UpdatedAtMillis),
	)
}

func (t *Telemetry) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, tt thrift.TType) (bool, error) {
		var err error
		switch {
		case id == 1 && tt == thrift.STRING:
			t.DroneID, err = p.ReadString(ctx)
		case id == 2 && tt == thrift.STRING:
			t.Name, err = p.ReadString(ctx)
		case id == 3 && tt == thrift.STRING:
			t.State, err = p.ReadString(ctx)
		case id == 4 && tt == thrift.STRUCT:
			err = t.Position.Read(ctx, p)
		case id == 5 && tt == thrift.DOUBLE:
			t.Heading, err = p.ReadDouble(ctx)
		case id == 6 && tt == thrift.DOUBLE:
			t.Speed, err = p.ReadDouble(ctx)
		case id == 7 && tt == thrift.DOUBLE:
			t.FuelLevel, err = p.ReadDouble(ctx)
		case id == 8 && tt == thrift.DOUBLE:
			t.FuelPercentage, err = p.ReadDouble(ctx)
		case id == 9 && tt == thrift.STRING:
			t.FuelStatus, err = p.ReadString(ctx)
		case id == 10 && tt == thrift.I64:
			t.UpdatedAtMillis, err = p.ReadI64(ctx)
		default:
			return false, nil
		}
		return true, err
	})
}

type TelemetryList struct {
	Drones []*Telemetry
}

func (l *TelemetryList) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, "TelemetryList", field{
		name: "drones", id: 1, kind: thrift.LIST,
		write: func(ctx context.Context, p thrift.TProtocol) error {
			if err := p.WriteListBegin(ctx, thrift.STRUCT, len(l.Drones)); err != nil {
				return err
			}
			for _, t := range l.Drones {
				if err := t.Write(ctx, p); err != nil {
					return err
				}
			}
			return p.WriteListEnd(ctx)
		},
	})
}

func (l *TelemetryList) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		if id != 1 || t != thrift.LIST {
			return false, nil
		}
		elem, size, err := p.ReadListBegin(ctx)
		if err != nil {
			return true, err
		}
		if elem != thrift.STRUCT {
			return true, fmt.Errorf("drones: unexpected element type %v", elem)
		}
		l.Drones = make([]*Telemetry, 0, size)
		for i := 0; i < size; i++ {
			t := &Telemetry{}
			if err := t.Read(ctx, p); err != nil {
				return true, err
			}
			l.Drones = append(l.Drones, t)
		}
		return true, p.ReadListEnd(ctx)
	})
}

// Void is the empty result of calls that return nothing.
type Void struct{}

func (*Void) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, "Void")
}

func (*Void) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(int16, thrift.TType) (bool, error) { return false, nil })
}

// callArgs wraps a request as field 1 of <Method>_args.
type callArgs struct {
	method  string
	request thrift.TStruct
}

func (a *callArgs) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, a.method+"_args", structField("request", 1, a.request))
}

func (a *callArgs) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		if id != 1 || t != thrift.STRUCT {
			return false, nil
		}
		return true, a.request.Read(ctx, p)
	})
}

// callResult wraps a response as field 0 of <Method>_result.
type callResult struct {
	method  string
	success thrift.TStruct
}

func (r *callResult) Write(ctx context.Context, p thrift.TProtocol) error {
	return writeStruct(ctx, p, r.method+"_result", structField("success", 0, r.success))
}

func (r *callResult) Read(ctx context.Context, p thrift.TProtocol) error {
	return readStruct(ctx, p, func(id int16, t thrift.TType) (bool, error) {
		if id != 0 || t != thrift.STRUCT {
			return false, nil
		}
		return true, r.success.Read(ctx, p)
	})
}

type field struct {
	name  string
	id    int16
	kind  thrift.TType
	write func(context.Context, thrift.TProtocol) error
}

func stringField(name string, id int16, v string) field {
	return field{name, id, thrift.STRING, func(ctx context.Context, p thrift.TProtocol) error { return p.WriteString(ctx, v) }}
}

func doubleField(name string, id int16, v float64) field {
	return field{name, id, thrift.DOUBLE, func(ctx context.Context, p thrift.TProtocol) error { return p.WriteDouble(ctx, v) }}
}

func i64Field(name string, id int16, v int64) field {
	return field{name, id, thrift.I64, func(ctx context.Context, p thrift.TProtocol) error { return p.WriteI64(ctx, v) }}
}

func boolField(name string, id int16, v bool) field {
	return field{name, id, thrift.BOOL, func(ctx context.Context, p thrift.TProtocol) error { return p.WriteBool(ctx, v) }}
}

func structField(name string, id int16, v thrift.TStruct) field {
	return field{name, id, thrift.STRUCT, v.Write}
}

func writeStruct(ctx context.Context, p thrift.TProtocol, name string, fields ...field) error {
	if err := p.WriteStructBegin(ctx, name); err != nil {
		return err
	}
	for _, f := range fields {
		if err := p.WriteFieldBegin(ctx, f.name, f.kind, f.id); err != nil {
			return err
		}
		if err := f.write(ctx, p); err != nil {
			return fmt.Errorf("%s.%s: %w", name, f.name, err)
		}
		if err := p.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

// readStruct walks the fields of a struct. read reports whether it consumed the
// field; anything it leaves is skipped.
func readStruct(ctx context.Context, p thrift.TProtocol, read func(id int16, t thrift.TType) (bool, error)) error {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return err
	}
	for {
		_, fieldType, fieldID, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}
		handled, err := read(fieldID, fieldType)
		if err != nil {
			return err
		}
		if !handled {
			if err := p.Skip(ctx, fieldType); err != nil {
				return err
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}
	return p.ReadStructEnd(ctx)
}
