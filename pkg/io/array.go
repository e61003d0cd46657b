package io

import (
	"errors"
	"reflect"
)

// MaxArraySize bounds var_int-prefixed array counts read off the wire;
// it matches the checkpoint codec's transaction ceiling,
// MaxTransactionsPerBlock (§4.6).
const MaxArraySize = 65536

func (w *BinWriter) encodeArrayReflect(arr interface{}) {
	if w.Err != nil {
		return
	}
	v := reflect.ValueOf(arr)
	if v.Kind() != reflect.Slice {
		w.Err = errors.New("io: WriteArray expects a slice")
		return
	}
	l := v.Len()
	w.WriteVarUint(uint64(l))
	for i := 0; i < l && w.Err == nil; i++ {
		el := v.Index(i)
		s, ok := elemSerializable(el)
		if !ok {
			w.Err = errors.New("io: element does not implement Serializable")
			return
		}
		s.EncodeBinary(w)
	}
}

func (r *BinReader) decodeArrayReflect(arr interface{}, newElem func() Serializable) {
	if r.Err != nil {
		return
	}
	v := reflect.ValueOf(arr)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		r.Err = errors.New("io: ReadArray expects a pointer to a slice")
		return
	}
	l := r.ReadVarUint()
	if r.Err != nil {
		return
	}
	if l > MaxArraySize {
		r.Err = errors.New("io: array size exceeds limit")
		return
	}
	sl := v.Elem()
	elemType := sl.Type().Elem()
	out := reflect.MakeSlice(sl.Type(), int(l), int(l))
	for i := 0; i < int(l) && r.Err == nil; i++ {
		var elVal reflect.Value
		if newElem != nil {
			s := newElem()
			s.DecodeBinary(r)
			elVal = reflect.ValueOf(s)
			if elemType.Kind() != reflect.Ptr {
				elVal = elVal.Elem()
			}
		} else {
			ptr := reflect.New(elemType)
			ptr.Interface().(Serializable).DecodeBinary(r)
			elVal = ptr.Elem()
		}
		out.Index(i).Set(elVal)
	}
	sl.Set(out)
}

func elemSerializable(v reflect.Value) (Serializable, bool) {
	if v.CanAddr() {
		if s, ok := v.Addr().Interface().(Serializable); ok {
			return s, true
		}
	}
	if s, ok := v.Interface().(Serializable); ok {
		return s, true
	}
	return nil, false
}
